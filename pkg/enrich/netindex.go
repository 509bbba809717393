// pkg/enrich/netindex.go
package enrich

// BuildNetworkIndex maps each resource URL to the single network transfer
// that actually delivered it. Only transfers that finished with a 2xx
// status are eligible; everything else is skipped outright and never
// displaces an existing entry. When multiple eligible transfers share a
// URL the later one in input order wins, modeling cache revalidation and
// redirect resolution order. Joining on URL is what lets later stages
// classify the delivered format even when the declared MIME type lies
// (octet-stream responses, mislabeled CDNs).
func BuildNetworkIndex(records []NetworkRecord) map[string]NetworkRecord {
	index := make(map[string]NetworkRecord, len(records))
	for _, rec := range records {
		if !rec.Finished {
			continue
		}
		if rec.StatusCode < 200 || rec.StatusCode >= 300 {
			continue
		}
		index[rec.URL] = rec
	}
	return index
}
