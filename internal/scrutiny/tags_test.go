package scrutiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTag(t *testing.T) {
	assert.Equal(t, []string{
		"scrutiny_product",
		"#scrutiny_product",
		"scrutiny_product_v01",
		"#scrutiny_product_v01",
		"scrutiny-product",
		"#scrutiny-product",
		"scrutiny-product-v0",
		"#scrutiny-product-v0",
	}, ExpandTag(TagProduct))
}

func TestParseTags(t *testing.T) {
	tags := ParseTags([][]string{
		{"t", "#scrutiny_mo"},
		{"e", hexID(1), "wss://relay", "root"},
		{"e", hexID(2)},
		{"e", hexID(3), "", "depends_on"},
		{"e", hexID(4), "", "quote"},
		{"l", hexID(5), "scrutiny:product:contains"},
		{"l", "vendor", "NXP Semiconductors", "text"},
		{"d", "com.nxp:jcop-4"},
		{},
		{"e"},
		{"t"},
	})

	require.Len(t, tags, 10)
	assert.Equal(t, TopicTag{Value: "#scrutiny_mo"}, tags[0])
	assert.Equal(t, ReferenceTag{ID: hexID(1), Relay: "wss://relay", Marker: MarkerRoot}, tags[1])
	assert.Equal(t, ReferenceTag{ID: hexID(2)}, tags[2])
	assert.Equal(t, ReferenceTag{ID: hexID(3), Marker: MarkerDependsOn}, tags[3])
	assert.Equal(t, ReferenceTag{ID: hexID(4), Marker: MarkerOther}, tags[4])
	assert.Equal(t, LabelTag{Value: hexID(5), Namespace: "scrutiny:product:contains"}, tags[5])
	assert.Equal(t, LabelTag{Value: "NXP Semiconductors", Namespace: "vendor"}, tags[6])
	assert.Equal(t, OtherTag{Name: "d", Values: []string{"com.nxp:jcop-4"}}, tags[7])
	assert.Equal(t, OtherTag{Name: "e"}, tags[8])
	assert.Equal(t, OtherTag{Name: "t"}, tags[9])
}

func TestMarkerRelation(t *testing.T) {
	tests := []struct {
		marker Marker
		want   RelationKind
		ok     bool
	}{
		{MarkerContains, RelationContains, true},
		{MarkerDependsOn, RelationDependsOn, true},
		{MarkerSupersedes, RelationSupersedes, true},
		{MarkerSuccessor, RelationSuccessor, true},
		{MarkerRoot, 0, false},
		{MarkerMention, 0, false},
		{MarkerNone, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.marker.String(), func(t *testing.T) {
			got, ok := tt.marker.Relation()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"scrutiny:product:vendor", "vendor"},
		{"scrutiny:product:contains", "contains"},
		{"scrutiny:product:unknown_field", "scrutiny:product:unknown_field"},
		{"vendor", "vendor"},
		{"other:product:vendor", "other:product:vendor"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.in))
		})
	}
}

func TestNamespacedLabelIsInverse(t *testing.T) {
	for ns, flat := range labelAliases {
		assert.Equal(t, ns, NamespacedLabel(flat))
		assert.Equal(t, flat, NormalizeLabel(NamespacedLabel(flat)))
	}
	assert.Equal(t, "custom", NamespacedLabel("custom"))
}

func TestLabelsMatchAcrossGenerations(t *testing.T) {
	legacy := ClassifyPost(productPost(hexID(1), []string{"l", "NXP", "vendor"}))
	current := ClassifyPost(productPost(hexID(2), []string{"l", "NXP", "scrutiny:product:vendor"}))
	publisher := ClassifyPost(productPost(hexID(3), []string{"l", "vendor", "NXP", "text"}))

	assert.Equal(t, []string{"NXP"}, legacy.Labels()["vendor"])
	assert.Equal(t, legacy.Labels(), current.Labels())
	assert.Equal(t, legacy.Labels(), publisher.Labels())
}

func TestLabelsPublisherLayoutOutsideAliasTable(t *testing.T) {
	got := Labels(ParseTags([][]string{
		{"l", "symmetric_crypto", "AES", "algorithm"},
		{"l", "symmetric_crypto", "3DES", "algorithm"},
		{"l", "cipher_mode", "CBC", "mode"},
		{"l", "javacard_version", "3.0.5", "version"},
		{"l", "atr", "3B:8F:80", "id"},
		{"l", "draft", "status", "text"},
		{"l", "NXP", "vendor"},
	}))

	assert.Equal(t, map[string][]string{
		"symmetric_crypto": {"AES", "3DES"},
		"cipher_mode":      {"CBC"},
		"javacard_version": {"3.0.5"},
		"atr":              {"3B:8F:80"},
		"status":           {"draft"},
		"vendor":           {"NXP"},
	}, got)
}

func TestTopicFilterCoversEveryGeneration(t *testing.T) {
	filter := TopicFilter()
	assert.Len(t, filter, (3+len(typeBases))*8)

	for _, v := range []string{
		"scrutiny_mo", "#scrutiny_mo_v01", "seccerts_mo", "scrutiny-overlay",
		"scrutiny-binding-v0", "scrutiny-update-v0", "#scrutiny_confirmation",
	} {
		assert.Contains(t, filter, v)
	}
}
