package services

import (
	"math/rand"

	"github.com/auroracast/stagecast/pkg/internal/database"
	"github.com/auroracast/stagecast/pkg/internal/models"
)

var profileColors = []string{
	"blue", "green", "lavender", "salmon", "turquoise", "violet", "yellow",
}

var profileAvatars = []string{
	"bear", "bird", "dog", "giraffe", "hedgehog", "ibex", "jellyfish", "tiger",
}

func GetAccount(id uint) (models.Account, error) {
	var account models.Account
	if err := database.C.
		Where(models.Account{BaseModel: models.BaseModel{ID: id}}).
		First(&account).Error; err != nil {
		return account, err
	}
	return account, nil
}

func GetAccountWithUsername(username string) (models.Account, error) {
	var account models.Account
	if err := database.C.
		Where(models.Account{Username: username}).
		First(&account).Error; err != nil {
		return account, err
	}
	return account, nil
}

// NewAccount creates a channel profile with randomly assigned appearance
// attributes.
func NewAccount(username, channelArn string) (models.Account, error) {
	account := models.Account{
		Username:     username,
		ProfileColor: profileColors[rand.Intn(len(profileColors))],
		Avatar:       profileAvatars[rand.Intn(len(profileAvatars))],
		ChannelArn:   channelArn,
	}
	if err := database.C.Save(&account).Error; err != nil {
		return account, err
	}
	return account, nil
}
