package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

func TestIndexable(t *testing.T) {
	cases := []struct {
		name string
		doc  models.KnowledgeDoc
		want bool
	}{
		{"master", models.KnowledgeDoc{Category: models.CategoryMaster}, true},
		{"case study", models.KnowledgeDoc{Category: models.CategoryCaseStudy}, true},
		{"master excluded", models.KnowledgeDoc{Category: models.CategoryMaster, ExcludeFromAI: true}, false},
		{"title page", models.KnowledgeDoc{Category: models.CategoryTitlePage, ExcludeFromAI: true}, false},
		{"contact page", models.KnowledgeDoc{Category: models.CategoryContactPage, ExcludeFromAI: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, indexable(tc.doc))
		})
	}
}
