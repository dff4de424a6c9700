package dynamo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/zlnvch/notes/models"
)

type DynamoNotesStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoNotesStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoNotesStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(ctx, client)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, tableName) {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoNotesStore{client: client, tableName: tableName}, nil
}

// CreateUser is idempotent: the caller derives user.Id from the provider
// identity, and an existing profile is returned unchanged.
func (dynamoStore *DynamoNotesStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	du := userToDynamo(user)
	du.Created = time.Now().Unix()
	du, _, err := ensureItem(dynamoStore, ctx, du)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoNotesStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, userPK(userId), profileSK, false)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoNotesStore) DeleteUser(ctx context.Context, userId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, userPK(userId), profileSK, "", "")
}

func (dynamoStore *DynamoNotesStore) IncrementUserNoteCount(ctx context.Context, userId string, count int) error {
	return incrementCounter(dynamoStore, ctx, userPK(userId), profileSK, "NoteCount", count)
}

func (dynamoStore *DynamoNotesStore) ListNotes(ctx context.Context, userId string) ([]models.Note, error) {
	dynamoNotes, err := queryAllByPK[dynamoNote](dynamoStore, ctx, notesPK(userId), true)
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(dynamoNotes))
	for _, dn := range dynamoNotes {
		notes = append(notes, noteFromDynamo(dn))
	}

	return notes, nil
}

func (dynamoStore *DynamoNotesStore) GetNote(ctx context.Context, userId string, noteId string) (models.Note, error) {
	dn, err := getItem[dynamoNote](dynamoStore, ctx, notesPK(userId), noteId, true)
	if err != nil {
		return models.Note{}, err
	}

	return noteFromDynamo(dn), nil
}

func (dynamoStore *DynamoNotesStore) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	dn, inserted, err := ensureItem(dynamoStore, ctx, noteToDynamo(note))
	if err != nil {
		return models.Note{}, err
	}
	if !inserted {
		return models.Note{}, fmt.Errorf("note %s already exists", note.Id)
	}

	return noteFromDynamo(dn), nil
}

// UpdateNote replaces the mutable fields of an existing note. Owner and
// creation time are part of the key or fixed at creation and never change.
func (dynamoStore *DynamoNotesStore) UpdateNote(ctx context.Context, note models.Note) (models.Note, error) {
	dn, err := updateItem(dynamoStore, ctx, noteToDynamo(note), []string{
		"Title", "TextContent", "ImageFile", "AudioFile", "AudioTranscript", "Favourite",
	})
	if err != nil {
		return models.Note{}, err
	}

	return noteFromDynamo(dn), nil
}

func (dynamoStore *DynamoNotesStore) DeleteNote(ctx context.Context, userId string, noteId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, notesPK(userId), noteId, "UserId", userId)
}

func (dynamoStore *DynamoNotesStore) DeleteUserNotes(ctx context.Context, userId string) error {
	return batchDeletePartitionThrottled(dynamoStore, ctx, notesPK(userId), 50*time.Millisecond)
}
