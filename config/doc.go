// Package config loads the YAML configuration of a secrets runtime:
// provider declarations, declarative Specs and runtime options.
//
//	allowEmptyACLSpecs: true
//	onTheFlySpecs:
//	  enabled: true
//	renewal:
//	  checkBeforeTTL: 5s
//	  retry:
//	    attempts: 3
//	    initialDelay: 200ms
//	providers:
//	  - id: vault
//	    plugin: mock
//	    environments: [env-a]
//	    timeout: 2s
//	    configuration:
//	      secrets:
//	        mySecret:
//	          redisPassword: ${REDIS_PASSWORD}
//	specs:
//	  - name: redis-password
//	    envId: env-a
//	    uri: /vault/mySecret
//	    key: redisPassword
//	    resolution:
//	      type: TTL
//	      duration: 1h
//
// Durations are Go duration strings. Unknown fields are rejected.
package config
