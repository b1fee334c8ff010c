/*
Package ratelimit provides rate limiting primitives.

  - bucket: token bucket limiter with burst capacity

flowbench uses the token bucket to pace simulated links, where each token
is one byte:

	limiter, _ := bucket.NewWithConfig(bucket.Config{
		Rate:  512 * 1024, // bytes per second
		Burst: 24 * 1024,  // one read chunk
	})
	if err := limiter.WaitN(ctx, n); err != nil {
		return err
	}

The limiter is safe for concurrent use and its blocking calls honour
context cancellation.
*/
package ratelimit
