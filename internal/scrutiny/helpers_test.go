package scrutiny

import "fmt"

const (
	alice = "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	bob   = "b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0"
)

func hexID(n int) string {
	return fmt.Sprintf("%064x", n)
}

func topics(values ...string) [][]string {
	tags := make([][]string, 0, len(values))
	for _, v := range values {
		tags = append(tags, []string{"t", v})
	}
	return tags
}

func ref(id, marker string) []string {
	return []string{"e", id, "", marker}
}

func post(id string, createdAt int64, tags ...[]string) RawPost {
	return RawPost{ID: id, Author: alice, CreatedAt: createdAt, Tags: tags}
}

func productPost(id string, extra ...[]string) RawPost {
	tags := append(topics("#"+TagNamespace, "#"+TagProduct, "#"+TagVersion), extra...)
	return RawPost{ID: id, Author: alice, CreatedAt: 100, Content: "Product " + id[60:], Tags: tags}
}

func metadataPost(id string, extra ...[]string) RawPost {
	tags := append(topics("#"+TagNamespace, "#"+TagMetadata, "#"+TagVersion), extra...)
	return RawPost{ID: id, Author: alice, CreatedAt: 100, Content: "Metadata " + id[60:], Tags: tags}
}

func bindingPost(id, content string, mentions ...string) RawPost {
	tags := topics("#"+TagNamespace, "#"+TagBinding, "#"+TagVersion)
	for _, m := range mentions {
		tags = append(tags, ref(m, "mention"))
	}
	return RawPost{ID: id, Author: alice, CreatedAt: 100, Content: content, Tags: tags}
}

func replyPost(id, base, target, root string, createdAt int64, extra ...[]string) RawPost {
	tags := topics("#"+TagNamespace, "#"+base, "#"+target, "#"+TagVersion)
	if root != "" {
		tags = append(tags, ref(root, "root"), ref(root, "reply"))
	}
	tags = append(tags, extra...)
	return RawPost{ID: id, Author: alice, CreatedAt: createdAt, Tags: tags}
}

type recordingObserver struct {
	diags []Diagnostic
}

func (r *recordingObserver) Observe(d Diagnostic) {
	r.diags = append(r.diags, d)
}

func (r *recordingObserver) codes() []DiagnosticCode {
	out := make([]DiagnosticCode, 0, len(r.diags))
	for _, d := range r.diags {
		out = append(out, d.Code)
	}
	return out
}
