package techparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTechnologies(t *testing.T) {
	text := "Deploying a Solana smart contract with Docker and an LLM agent"

	found := ExtractTechnologies(text, nil)
	assert.Contains(t, found, "solana")
	assert.Contains(t, found, "smart contract")
	assert.Contains(t, found, "docker")
	assert.Contains(t, found, "llm")
	assert.Contains(t, found, "agent")
}

func TestExtractTechnologiesCustomTerms(t *testing.T) {
	found := ExtractTechnologies("running on kubernetes", []string{"kubernetes"})
	assert.Contains(t, found, "kubernetes")
}

func TestExtractTechnologiesWordBoundary(t *testing.T) {
	// "apis"不应命中"api"
	found := ExtractTechnologies("reading about rapid apis", nil)
	assert.NotContains(t, found, "api")
}

func TestExtractMetadata(t *testing.T) {
	meta := ExtractMetadata("Connect MetaMask wallet to Ethereum via web3 API")

	assert.Greater(t, meta.Score, 3)
	assert.Contains(t, meta.Categories["blockchain"], "wallet")
	assert.Contains(t, meta.Categories["blockchain"], "ethereum")
	assert.Contains(t, meta.Categories["wallets"], "metamask")
	assert.Contains(t, meta.Categories["dev"], "api")
	assert.Equal(t, 8, meta.WordCount)
}

func TestIsTechnical(t *testing.T) {
	assert.True(t, IsTechnical("writing a graphql resolver", 1))
	assert.False(t, IsTechnical("what a lovely morning", 1))
	assert.False(t, IsTechnical("just one api mention", 2))
}

func TestCategorySummary(t *testing.T) {
	summary := CategorySummary("phantom wallet on solana")

	assert.Equal(t, 2, summary["blockchain"])
	assert.Equal(t, 1, summary["wallets"])
	assert.Equal(t, 0, summary["ai"])
	assert.Equal(t, 0, summary["dev"])
}
