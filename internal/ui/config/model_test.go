package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
)

func filledValues() *formValues {
	return &formValues{
		address:   " me@outlook.com ",
		password:  "app-pass",
		apiKey:    "key",
		tone:      model.ToneCasual,
		maxEmails: "10",
		daysBack:  "3",
		run:       true,
	}
}

func TestToConfig(t *testing.T) {
	base := model.Config{Export: model.ExportConfig{Dir: "out"}}

	cfg, err := toConfig(base, filledValues())
	require.NoError(t, err)

	assert.Equal(t, "me@outlook.com", cfg.Email.Address)
	assert.Equal(t, "imap.outlook.com", cfg.Email.IMAPHost)
	assert.Equal(t, model.DefaultIMAPPort, cfg.Email.IMAPPort)
	assert.Equal(t, "smtp.outlook.com", cfg.Email.SMTPHost)
	assert.Equal(t, model.ToneCasual, cfg.AI.Tone)
	assert.Equal(t, 10, cfg.Run.MaxEmails)
	assert.Equal(t, 3, cfg.Run.DaysBack)
	assert.Equal(t, "out", cfg.Export.Dir, "fields outside the form are kept")
}

func TestToConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*formValues)
		wantErr string
	}{
		{name: "non numeric port", mutate: func(v *formValues) { v.imapPort = "abc" }, wantErr: "imap port"},
		{name: "too many emails", mutate: func(v *formValues) { v.maxEmails = "50" }, wantErr: "max emails must be between 1 and 20"},
		{name: "missing key", mutate: func(v *formValues) { v.apiKey = " " }, wantErr: "api key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := filledValues()
			tt.mutate(v)

			_, err := toConfig(model.Config{}, v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePort(""))
	assert.NoError(t, validatePort("993"))
	assert.Error(t, validatePort("99x"))
	assert.Error(t, validatePort("70000"))

	inRange := validateRange("Days back", 1, 7)
	assert.NoError(t, inRange("7"))
	assert.EqualError(t, inRange("0"), "Days back must be between 1 and 7")
	assert.EqualError(t, inRange(""), "Days back must be a number")

	assert.EqualError(t, validateRequired("Email address")("  "), "Email address is required")
}

func TestValuesFromConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.AI.Tone = "bogus"

	v := valuesFrom(cfg)

	assert.Equal(t, model.ToneProfessional, v.tone)
	assert.Equal(t, "993", v.imapPort)
	assert.Equal(t, "5", v.maxEmails)
	assert.True(t, v.run)
}

func TestSubmitEmitsConfig(t *testing.T) {
	m := New(model.DefaultConfig(), keys.DefaultKeyMap(), 80, 24)
	*m.values = *filledValues()

	m, cmd := m.submit()
	require.NotNil(t, cmd)

	msg, ok := cmd().(SubmitMsg)
	require.True(t, ok)
	assert.Equal(t, "me@outlook.com", msg.Config.Email.Address)
	assert.Empty(t, m.errMsg)
}

func TestSubmitInvalidKeepsForm(t *testing.T) {
	m := New(model.DefaultConfig(), keys.DefaultKeyMap(), 80, 24)
	*m.values = *filledValues()
	m.values.daysBack = "9"

	m, _ = m.submit()

	assert.Contains(t, m.errMsg, "days back")
	assert.Equal(t, " me@outlook.com ", m.values.address, "values survive the rebuild")
	assert.True(t, m.values.run)
}

func TestSubmitDeclinedRun(t *testing.T) {
	m := New(model.DefaultConfig(), keys.DefaultKeyMap(), 80, 24)
	*m.values = *filledValues()
	m.values.run = false

	m, _ = m.submit()

	assert.Contains(t, m.errMsg, "Run not started")
}
