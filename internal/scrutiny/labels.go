package scrutiny

import "strings"

// LabelPrefix marks a namespaced label name (family:category:field).
const LabelPrefix = "scrutiny:"

// labelAliases maps current-generation namespaced labels to the legacy flat
// names. flatAliases is the inverse and is built at init.
var labelAliases = map[string]string{
	"scrutiny:product:vendor":         "vendor",
	"scrutiny:product:name":           "product_name",
	"scrutiny:product:version":        "product_version",
	"scrutiny:product:category":       "category",
	"scrutiny:product:status":         "status",
	"scrutiny:product:cpe23":          "cpe23",
	"scrutiny:product:purl":           "purl",
	"scrutiny:product:release_date":   "release_date",
	"scrutiny:product:sbom_url":       "sbom_url",
	"scrutiny:product:sbom_sha256":    "sbom_sha256",
	"scrutiny:product:contains":       "contains",
	"scrutiny:product:depends_on":     "depends_on",
	"scrutiny:product:supersedes":     "supersedes",
	"scrutiny:product:successor":      "successor",
	"scrutiny:cert:eal":               "eal",
	"scrutiny:cert:scheme":            "scheme",
	"scrutiny:cert:id":                "cert_id",
	"scrutiny:cert:not_valid_before":  "not_valid_before",
	"scrutiny:cert:not_valid_after":   "not_valid_after",
	"scrutiny:cert:security_level":    "security_level",
	"scrutiny:metadata:source":        "source",
	"scrutiny:metadata:original_url":  "original_url",
	"scrutiny:metadata:original_hash": "original_x",
	"scrutiny:metadata:seccerts_url":  "seccerts_url",
}

var flatAliases = func() map[string]string {
	m := make(map[string]string, len(labelAliases))
	for ns, flat := range labelAliases {
		m[flat] = ns
	}
	return m
}()

// NormalizeLabel maps a namespaced label to its canonical flat name. Names
// outside the prefix, and namespaced names missing from the alias table, are
// returned unchanged.
func NormalizeLabel(namespace string) string {
	if !strings.HasPrefix(namespace, LabelPrefix) {
		return namespace
	}
	if flat, ok := labelAliases[namespace]; ok {
		return flat
	}
	return namespace
}

// NamespacedLabel is the inverse of NormalizeLabel. Unknown names are returned
// unchanged.
func NamespacedLabel(flat string) string {
	if ns, ok := flatAliases[flat]; ok {
		return ns
	}
	return flat
}

func isKnownLabel(name string) bool {
	_, ok := flatAliases[name]
	return ok
}

// Labels returns label values keyed by normalized name, in tag order.
func Labels(tags []Tag) map[string][]string {
	out := make(map[string][]string)
	for _, t := range tags {
		if lbl, ok := t.(LabelTag); ok {
			name := NormalizeLabel(lbl.Namespace)
			out[name] = append(out[name], lbl.Value)
		}
	}
	return out
}
