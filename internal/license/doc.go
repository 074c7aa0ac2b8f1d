// Package license resolves the status of an Easy Digital Downloads (EDD)
// software license against the vendor's licensing endpoint.
//
// # Overview
//
// A Validator takes a raw license key and returns one of the Status values.
// The remote endpoint is only contacted when the cached state requires it:
//
//	- A license that was never activated triggers an activate_license request,
//	  always followed by a check_license request whose result is authoritative.
//	- Once the activation-attempted marker is stored, the cached status is
//	  returned until it expires, after which a check_license request refreshes it.
//
// # Cache entries
//
// Both entries are keyed by the license handle, a short BLAKE2b fingerprint of
// the normalized key, so the key itself never appears in cache key names:
//
//	license_status_<handle>  last authoritative status   (default TTL 48h)
//	license_try_<handle>     activation-attempted marker (default TTL 365 days)
//
// The two entries expire independently. A StatusCache may be in-process
// (MemoryCache) or shared between instances (RedisCache).
//
// # Failures
//
// Transport failures and malformed responses are reported as StatusNoResponse
// and never written to the cache, so the next call retries. ResolveStatus only
// returns an error when no license key was supplied.
//
// # Example
//
//	cache := license.NewMemoryCache()
//	defer cache.Stop()
//
//	v, err := license.NewValidator(license.Config{
//	    Server:   "https://shop.example.com",
//	    ItemName: "My Plugin",
//	    SiteURL:  "https://customer.example.org",
//	}, cache, slog.Default())
//	if err != nil {
//	    return err
//	}
//	status, err := v.ResolveStatus(ctx, key)
package license
