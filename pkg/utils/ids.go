package utils

const (
	nvd           = "nvd.nist.gov"
	nvdDetailPath = "/vuln/detail/"

	// NVDLinkPrefix is prepended to a vulnerability identifier to build its NVD detail page.
	NVDLinkPrefix = "https://" + nvd + nvdDetailPath
)

// NVDLink returns the NVD detail page of id, or "" when id is empty.
func NVDLink(id string) string {
	if id == "" {
		return ""
	}
	return NVDLinkPrefix + id
}
