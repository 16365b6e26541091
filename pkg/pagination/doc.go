// Package pagination turns one large DSIS collection read into a lazy
// sequence of bounded pages.
//
// The data server refuses to return big collections (tens of thousands of
// LOG records) in one response, so the paginator issues repeated requests
// with $skip/$top and stops at the first empty page.
//
// Example usage:
//
//	p := pagination.NewPaginator(dsisClient, pagination.DefaultConfig())
//	for page, err := range p.Pages(ctx, "NORWAY_WELLDB", "LOG") {
//		if err != nil {
//			return err
//		}
//		process(page.Records)
//	}
//
// The window widens every round: round i requests $skip=Step*i and
// $top=Step*(i+1). Deployed scripts depend on exactly this sequence of
// requests, so it is kept even though a fixed-width window ($skip += $top)
// would request fewer overlapping records from a standard OData service.
//
// Pages are fetched one at a time and only when the consumer asks for the
// next one; breaking out of the range loop stops all further requests.
package pagination
