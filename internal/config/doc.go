// Package config loads the service configuration.
//
// # Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file: $EDDLICENSE_CONFIG_FILE, or ./eddlicense.yaml when present
//	3. Environment variables prefixed with EDDLICENSE_
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	EDDLICENSE_LICENSE_SERVER=https://shop.example.com
//	EDDLICENSE_LICENSE_ITEM_NAME="My Plugin"
//	EDDLICENSE_LICENSE_SITE_URL=https://customer.example.org
//	EDDLICENSE_LICENSE_STATUS_TTL_SECONDS=172800
//	EDDLICENSE_LICENSE_ACTIVATION_TTL_SECONDS=31536000
//	EDDLICENSE_LICENSE_INSECURE_SKIP_VERIFY=false
//	EDDLICENSE_CACHE_BACKEND=redis
//	EDDLICENSE_CACHE_REDIS_ADDRESS=localhost:6379
//	EDDLICENSE_LOGGING_LEVEL=debug
//
// # Validation
//
// Load validates the result with go-playground/validator struct tags and
// reports every failing field by its YAML path.
package config
