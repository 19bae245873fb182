package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryData_Active(t *testing.T) {
	var nilData *RegistryData
	assert.False(t, nilData.Active())

	assert.True(t, (&RegistryData{CompanyStatus: "Active"}).Active())
	assert.True(t, (&RegistryData{CompanyStatus: "active"}).Active())
	assert.True(t, (&RegistryData{CompanyStatus: "ACTIVE"}).Active())
	assert.False(t, (&RegistryData{CompanyStatus: "Dissolved"}).Active())
	assert.False(t, (&RegistryData{}).Active())
}

func TestSentiment_Value(t *testing.T) {
	assert.Equal(t, 1.0, SentimentPositive.Value())
	assert.Equal(t, -1.0, SentimentNegative.Value())
	assert.Equal(t, 0.0, SentimentNeutral.Value())
	assert.Equal(t, 0.0, Sentiment("unknown").Value())
}
