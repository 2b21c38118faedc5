// Package pagination provides lazily loaded, random-access views over remote
// paginated collections for virtualized list consumers.
//
// A Pager describes the collection: total element count, fixed page size, an
// optional already fetched first page and a page fetch function. A
// PagedModel caches pages as they are resolved:
//
//	model, err := pagination.NewPagedModel(pager, pagination.WithName("orders"))
//	if err != nil {
//		return err
//	}
//	order, err := model.Resolve(ctx, 1234)
//
// The paged model:
//   - Maps index i to page i/PageSize, offset i%PageSize
//   - Runs at most one fetch per page; concurrent callers share it
//   - Cancels a page fetch only when every waiting caller has cancelled
//   - Reverts a page to unresolved on fetch failure so a later Resolve retries
//   - Never evicts resolved pages
//
// DelayedPagedModel adds a settle delay in front of any Model so positions a
// list only scrolls past never trigger a fetch. MapPager transforms element
// types without touching fetch logic. IterativePagedModel serves cursor-style
// sources whose total is unknown up front, and Prefetch warms whole ranges
// with a bounded worker pool.
//
// Cancellation is reported with errors wrapping ErrCancelled together with the
// context error; it is an expected outcome, not a failure.
package pagination
