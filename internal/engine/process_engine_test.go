package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/tts-gateway/internal/engine"
)

func TestProcessEngineVerifyMissingBinary(t *testing.T) {
	t.Parallel()

	log := createTestLogger(t)
	processEngine := engine.NewProcessEngine(
		"definitely-not-an-installed-binary", "/models", false, log)

	err := processEngine.Verify(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-an-installed-binary")
}

func TestProcessEngineDefaultBinary(t *testing.T) {
	t.Parallel()

	log := createTestLogger(t)
	processEngine := engine.NewProcessEngine("", "/models", true, log)

	// The default binary will not exist in the test environment either;
	// the error names it, which confirms the fallback was applied.
	err := processEngine.Verify(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), engine.DefaultBinaryName)
}
