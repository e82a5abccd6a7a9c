// Package purger ties the fetcher, the resource extractor, the crawler and
// the purge client together into the three purge workflows:
//
//   - PagePurger purges one page and every same-host stylesheet, script and
//     image it references.
//   - DomainPurger evicts a whole host with a single DOMAINPURGE.
//   - CrawlPurger crawls a host and purges every page it hit.
//
// Each workflow returns a model.Report. Per-URL failures are recorded in the
// report and do not stop the run; only a proxy that cannot be reached at all
// is fatal, reported as ErrConfiguration.
package purger
