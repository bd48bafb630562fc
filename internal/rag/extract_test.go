package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

func TestParseRequirementsPlainArray(t *testing.T) {
	raw := `[{"question":"What is your ISO status?","heading":"Quality","clarity":"ready"}]`
	reqs, err := ParseRequirements(raw)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "What is your ISO status?", reqs[0].Question)
	assert.Equal(t, "Quality", reqs[0].Heading)
}

func TestParseRequirementsStripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"question\":\"Outline your delivery plan.\",\"heading\":\"\",\"clarity\":\"attention\"}]\n```"
	reqs, err := ParseRequirements(raw)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Outline your delivery plan.", reqs[0].Question)
}

func TestParseRequirementsIgnoresSurroundingProse(t *testing.T) {
	raw := `Here are the requirements I found:
[{"question":"Describe staff vetting [DBS].","heading":"Safeguarding","clarity":"ready"}]
Let me know if you need more.`
	reqs, err := ParseRequirements(raw)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	// Brackets inside JSON strings must not confuse the array scan.
	assert.Equal(t, "Describe staff vetting [DBS].", reqs[0].Question)
}

func TestParseRequirementsEmptyArrayIsValid(t *testing.T) {
	reqs, err := ParseRequirements("[]")
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestParseRequirementsRejectsEmptyQuestion(t *testing.T) {
	_, err := ParseRequirements(`[{"question":"  ","heading":"x","clarity":"ready"}]`)
	assert.Error(t, err)
}

func TestParseRequirementsRejectsNonArray(t *testing.T) {
	_, err := ParseRequirements(`{"question":"not a list"}`)
	assert.Error(t, err)
}

func TestSectionsFromRequirementsClarityMapping(t *testing.T) {
	sections := SectionsFromRequirements([]Requirement{
		{Question: "Q1", Clarity: "ready"},
		{Question: "Q2", Clarity: "attention"},
		{Question: "Q3", Clarity: "Attention"},
		{Question: "Q4"},
	})
	require.Len(t, sections, 4)
	assert.Equal(t, models.SectionStatusEmpty, sections[0].Status)
	assert.Equal(t, models.SectionStatusAttention, sections[1].Status)
	assert.Equal(t, models.SectionStatusAttention, sections[2].Status)
	assert.Equal(t, models.SectionStatusEmpty, sections[3].Status)
}
