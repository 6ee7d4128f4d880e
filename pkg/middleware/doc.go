// Package middleware provides HTTP middleware for the gateway's public
// endpoints: panic recovery, request-id tagging and rate limiting.
//
// # Overview
//
// The auth-check endpoint and the registry webhook sit on the edge and
// absorb whatever the proxy and the registry send. Both rate limiters
// key requests by client IP by default; a custom KeyFunc can key by any
// request attribute instead.
//
// RateLimitMiddleware: In-memory rate limiting
//
//	limiter := middleware.NewRateLimiter(nil)
//	router.Use(middleware.NewRateLimitMiddleware(limiter, nil).Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, nil, "")
//	router.Use(middleware.NewDistributedRateLimitMiddleware(limiter, nil, logger).Handler)
//
// The Redis-backed limiter shares its counters across gateway replicas
// and fails open when Redis is unreachable, so a cache outage degrades
// rate limiting rather than availability.
package middleware
