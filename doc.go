// Package scrape is a caching HTTP fetch client for scripted data collection.
//
// A Client is bound to one origin. Fetch reconciles a relative or absolute ref
// against that origin, serves it from the local content store when a fresh
// copy exists, joins an identical request that is already in flight, and
// otherwise performs a rate limited transport call. Successful responses are
// decoded per the configured content type (json or html), written to the
// store and returned as an Artifact. Failed attempts are retried up to the
// configured bound, with an optional handler observing every failure.
//
//	client, err := scrape.New("https://httpbin.org",
//		scrape.WithCache(scrape.CacheOptions{Name: "httpbin", FileExtension: "json"}),
//		scrape.WithMaxRetries(2),
//	)
//	if err != nil {
//		return err
//	}
//	res, err := client.Fetch(ctx, "anything/1", scrape.WithMaxAge(24*time.Hour))
//
// The Client is safe for concurrent use by multiple goroutines.
package scrape
