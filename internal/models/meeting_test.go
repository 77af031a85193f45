package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeeting_QRValid(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	code := "abc"
	m := &Meeting{QRCode: &code, QRExpiresAt: &expiry}

	assert.True(t, m.QRValid(expiry.Add(-time.Second)))
	assert.False(t, m.QRValid(expiry))
	assert.False(t, m.QRValid(expiry.Add(time.Second)))

	assert.False(t, (&Meeting{QRExpiresAt: &expiry}).QRValid(expiry.Add(-time.Hour)))
}

func TestAlertTypeFor(t *testing.T) {
	typ, ok := AlertTypeFor(RiskMedium)
	assert.True(t, ok)
	assert.Equal(t, AlertPreventive, typ)

	typ, ok = AlertTypeFor(RiskHigh)
	assert.True(t, ok)
	assert.Equal(t, AlertCritical, typ)

	_, ok = AlertTypeFor(RiskLow)
	assert.False(t, ok)
}
