// Package wiki implements crawler.PageFetcher and crawler.SeedResolver against
// the MediaWiki Action API. Requests go through a colly collector and are paced
// by a shared limiter; every failure is returned as a *crawler.FetchError.
package wiki
