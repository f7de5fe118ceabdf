package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"net/smtp"
	"os"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/utils"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{Server: "smtp.example.com", Port: 587}
}

func sampleResult() models.RankingResult {
	return models.RankingResult{
		TotalCount: 1,
		ValidCount: 1,
		BestRated: &models.ProductRecord{
			Title:      "Widget",
			Price:      9.99,
			Rating:     4.5,
			ProductURL: "https://www.amazon.com/dp/B0WIDGET01",
		},
		Summary: "Widget summary",
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"both present", "sender@example.com", "secret", true},
		{"missing password", "sender@example.com", "", false},
		{"missing email", "", "secret", false},
		{"neither", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(testSMTPConfig(), tt.email, tt.password, models.DefaultAffiliateTag, testLogger())
			assert.Equal(t, tt.want, n.Configured())
		})
	}
}

func TestSendReportBuildsMessage(t *testing.T) {
	var captured *email.Email
	var capturedAddr string
	var capturedTLS *tls.Config

	n := NewNotifier(testSMTPConfig(), "sender@example.com", "secret", models.DefaultAffiliateTag, testLogger())
	n.send = func(e *email.Email, addr string, _ smtp.Auth, tlsCfg *tls.Config) error {
		captured = e
		capturedAddr = addr
		capturedTLS = tlsCfg
		return nil
	}

	err := n.SendReport(context.Background(), "user@example.com", "widgets", sampleResult())
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "sender@example.com", captured.From)
	assert.Equal(t, []string{"user@example.com"}, captured.To)
	assert.Equal(t, "Amazon Product Monitoring Report - widgets", captured.Subject)
	assert.Contains(t, string(captured.HTML), "<h1>Amazon Product Monitoring Report</h1>")
	assert.Contains(t, string(captured.HTML), "tag="+models.DefaultAffiliateTag)
	assert.Contains(t, string(captured.Text), "# Amazon Product Monitoring Report")
	assert.Equal(t, "smtp.example.com:587", capturedAddr)
	assert.Equal(t, "smtp.example.com", capturedTLS.ServerName)
}

func TestSendReportErrors(t *testing.T) {
	t.Run("unconfigured sender", func(t *testing.T) {
		n := NewNotifier(testSMTPConfig(), "", "", models.DefaultAffiliateTag, testLogger())
		err := n.SendReport(context.Background(), "user@example.com", "widgets", sampleResult())
		assert.ErrorIs(t, err, utils.ErrNotification)
	})

	t.Run("empty recipient", func(t *testing.T) {
		n := NewNotifier(testSMTPConfig(), "sender@example.com", "secret", models.DefaultAffiliateTag, testLogger())
		err := n.SendReport(context.Background(), "", "widgets", sampleResult())
		assert.ErrorIs(t, err, utils.ErrNotification)
	})

	t.Run("smtp failure wrapped", func(t *testing.T) {
		n := NewNotifier(testSMTPConfig(), "sender@example.com", "secret", models.DefaultAffiliateTag, testLogger())
		n.send = func(*email.Email, string, smtp.Auth, *tls.Config) error {
			return errors.New("connection refused")
		}
		err := n.SendReport(context.Background(), "user@example.com", "widgets", sampleResult())
		assert.ErrorIs(t, err, utils.ErrNotification)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("cancelled context", func(t *testing.T) {
		n := NewNotifier(testSMTPConfig(), "sender@example.com", "secret", models.DefaultAffiliateTag, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := n.SendReport(ctx, "user@example.com", "widgets", sampleResult())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
