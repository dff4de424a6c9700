package dynamo

import (
	"strings"
	"time"

	"github.com/zlnvch/notes/models"
)

const (
	userPKPrefix  = "USER#"
	notesPKPrefix = "NOTES#"
	profileSK     = "PROFILE"
)

func userPK(userId string) string {
	return userPKPrefix + userId
}

func notesPK(userId string) string {
	return notesPKPrefix + userId
}

type dynamoUser struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Email      string `dynamodbav:"Email"`
	Username   string `dynamodbav:"Username"`
	Provider   string `dynamodbav:"Provider"`
	ProviderId string `dynamodbav:"ProviderId"`
	Created    int64  `dynamodbav:"Created"`
	NoteCount  int    `dynamodbav:"NoteCount"`
}

// Map domain User -> Dynamo
func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:         userPK(u.Id),
		SK:         profileSK,
		Id:         u.Id,
		Email:      u.Email,
		Username:   u.Username,
		Provider:   u.Provider,
		ProviderId: u.ProviderId,
		Created:    u.Created,
		NoteCount:  u.NoteCount,
	}
}

// Map Dynamo -> domain User
func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:         du.Id,
		Email:      du.Email,
		Username:   du.Username,
		Provider:   du.Provider,
		ProviderId: du.ProviderId,
		Created:    du.Created,
		NoteCount:  du.NoteCount,
	}
}

// Notes live under the owner's partition, so listing a user's notes is a
// single query and the sort key (a UUIDv7) keeps them in creation order.
type dynamoNote struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	UserId          string `dynamodbav:"UserId"`
	Title           string `dynamodbav:"Title"`
	TextContent     string `dynamodbav:"TextContent"`
	ImageFile       string `dynamodbav:"ImageFile,omitempty"`
	AudioFile       string `dynamodbav:"AudioFile,omitempty"`
	AudioTranscript string `dynamodbav:"AudioTranscript,omitempty"`
	Favourite       bool   `dynamodbav:"Favourite"`
	CreatedAt       int64  `dynamodbav:"CreatedAt"`
}

// Map domain Note -> Dynamo
func noteToDynamo(n models.Note) dynamoNote {
	return dynamoNote{
		PK:              notesPK(n.UserId),
		SK:              n.Id,
		UserId:          n.UserId,
		Title:           n.Title,
		TextContent:     n.TextContent,
		ImageFile:       n.ImageFile,
		AudioFile:       n.AudioFile,
		AudioTranscript: n.AudioTranscript,
		Favourite:       n.Favourite,
		CreatedAt:       n.CreatedAt.UnixMilli(),
	}
}

// Map Dynamo -> domain Note
func noteFromDynamo(dn dynamoNote) models.Note {
	userId := dn.UserId
	if userId == "" {
		userId = strings.TrimPrefix(dn.PK, notesPKPrefix)
	}

	return models.Note{
		Id:              dn.SK,
		UserId:          userId,
		Title:           dn.Title,
		TextContent:     dn.TextContent,
		ImageFile:       dn.ImageFile,
		AudioFile:       dn.AudioFile,
		AudioTranscript: dn.AudioTranscript,
		Favourite:       dn.Favourite,
		CreatedAt:       time.UnixMilli(dn.CreatedAt).UTC(),
	}
}
