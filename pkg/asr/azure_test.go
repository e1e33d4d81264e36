package asr

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAzureProvider_NoCredentials(t *testing.T) {
	for _, k := range []string{"AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION"} {
		orig := os.Getenv(k)
		os.Unsetenv(k)
		defer func(k, v string) {
			if v != "" {
				os.Setenv(k, v)
			}
		}(k, orig)
	}

	_, err := NewAzureProvider(AzureConfig{SubscriptionKey: "k"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))

	p, err := NewAzureProvider(AzureConfig{SubscriptionKey: "k", Region: "westus"})
	require.NoError(t, err)
	assert.Equal(t, "azure-speech", p.Name())
	assert.Equal(t, "en-US", p.cfg.Language)
}

func TestClassifyAzureCancellation(t *testing.T) {
	assert.Equal(t, ErrCodePermissionDenied, classifyAzureCancellation(common.AuthenticationFailure))
	assert.Equal(t, ErrCodePermissionDenied, classifyAzureCancellation(common.Forbidden))
	assert.Equal(t, ErrCodeQuotaExceeded, classifyAzureCancellation(common.TooManyRequests))
	assert.Equal(t, ErrCodeNetworkError, classifyAzureCancellation(common.ConnectionFailure))
	assert.Equal(t, ErrCodeProviderError, classifyAzureCancellation(common.ServiceError))
}

func TestAzureProvider_Integration(t *testing.T) {
	if os.Getenv("AZURE_SPEECH_KEY") == "" || os.Getenv("AZURE_SPEECH_REGION") == "" {
		t.Skip("AZURE_SPEECH_KEY and AZURE_SPEECH_REGION not set")
	}
	p, err := NewAzureProvider(AzureConfig{})
	require.NoError(t, err)

	_, err = p.Recognize(context.Background(), bytes.NewReader(toneBytes(16000, 0, 0, 50)), DefaultAudioConfig(), RecognitionConfig{})
	assert.Equal(t, ErrCodeNoSpeech, CodeOf(err))
}
