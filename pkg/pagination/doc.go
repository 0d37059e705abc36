// Package pagination provides the two kinds of paging the service needs.
//
// Collect follows the catalog API's opaque cursors: it requests a page, decodes
// its entries, and repeats with the returned nextPageCursor until the upstream
// reports no further pages or the caller's condition says to stop.
//
// Example usage:
//
//	games, err := pagination.Collect[Game](ctx, resolver.Resolve, func(cursor string) string {
//		return gamesPath(userID, cursor)
//	}, pagination.UntilCount(10))
//
// Window slices an already materialized result set by offset and limit for
// output, clamping the limit to MaxLimit:
//
//	page := pagination.Window(passes, 0, 50)
//	// page.Data, page.Total, page.HasMore
//
// A failed fetch aborts Collect and discards everything collected so far.
package pagination
