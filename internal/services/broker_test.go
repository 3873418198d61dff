package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tutorly-backend/internal/models"
)

func TestQueueName(t *testing.T) {
	assert.Equal(t, "queue:elo-update", QueueName(models.JobTypeEloUpdate))
	assert.Equal(t, "queue:algorithm-switch", QueueName(models.JobTypeAlgorithmSwitch))
}

func TestUserChannel(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	assert.Equal(t, "user_updates:7d444840-9dc0-11d1-b245-5ffdce74fad2", UserChannel(id))
}

func TestLockKeyDistinguishesSubItems(t *testing.T) {
	key := models.ItemKey{UserID: uuid.New(), ItemType: models.ItemTypeQuiz, ItemID: uuid.New()}
	other := key
	other.SubIndex = 1
	assert.NotEqual(t, lockKey(key), lockKey(other))
}
