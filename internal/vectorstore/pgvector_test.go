package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterSQL(t *testing.T) {
	where, args := buildFilterSQL(nil, 2)
	assert.Equal(t, "", where)
	assert.Nil(t, args)

	where, args = buildFilterSQL(NewFilter().Where("status", "active"), 2)
	assert.Equal(t, "WHERE metadata @> $2::jsonb", where)
	require.Len(t, args, 1)
	assert.JSONEq(t, `{"status":"active"}`, args[0].(string))

	where, args = buildFilterSQL(
		NewFilter().WhereIn("doc_type", "law", "decree").Where("status", "active"), 2)
	// Fields render in sorted order for deterministic SQL.
	assert.Equal(t, "WHERE metadata->>$2 = ANY($3) AND metadata @> $4::jsonb", where)
	require.Len(t, args, 3)
	assert.Equal(t, "doc_type", args[0])
	assert.Equal(t, []string{"decree", "law"}, args[1])
}

func TestParsePassage(t *testing.T) {
	metadata := []byte(`{
		"document_id": "luat-dau-thau-2023",
		"document_title": "Luật Đấu thầu 2023",
		"doc_type": "law",
		"status": "active",
		"hierarchy": ["Chương II", "Điều 14", "Khoản 4"],
		"valid_until": "2030-12-31T00:00:00Z",
		"issuer": "Quốc hội"
	}`)

	p, err := parsePassage("p1", "nội dung", metadata)
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "nội dung", p.Content)
	assert.Equal(t, "luat-dau-thau-2023", p.DocumentID)
	assert.Equal(t, DocTypeLaw, p.DocType)
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, []string{"Chương II", "Điều 14", "Khoản 4"}, p.Hierarchy)
	require.NotNil(t, p.ValidUntil)
	assert.Equal(t, 2030, p.ValidUntil.Year())
	assert.Equal(t, "Quốc hội", p.Metadata["issuer"])
}

func TestParsePassageEmptyMetadata(t *testing.T) {
	p, err := parsePassage("p1", "nội dung", nil)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Nil(t, p.Metadata)
}

func TestParsePassageMalformedMetadata(t *testing.T) {
	_, err := parsePassage("p1", "nội dung", []byte("{broken"))
	assert.Error(t, err)
}

func TestParsePassageBadValidUntilIgnored(t *testing.T) {
	p, err := parsePassage("p1", "x", []byte(`{"valid_until": "sắp hết hạn"}`))
	require.NoError(t, err)
	assert.Nil(t, p.ValidUntil)
}
