// Package config loads and validates treeline.json.
//
// The configuration file lives at the project root and is discovered
// by walking up from the working directory. Missing fields take
// defaults; duration fields are strings in time.ParseDuration format
// ("60s", "5m"). A minimal file:
//
//	{
//	  "name": "myapp",
//	  "server": {"host": "0.0.0.0", "port": 4000},
//	  "snapshot": {"backend": "s3", "bucket": "myapp-sessions"}
//	}
package config
