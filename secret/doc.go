// Package secret defines the provider capability and the values it produces.
//
// It supports:
//   - Opaque secret values and bundles (see Secret, Map)
//   - Provider URLs and mounts (see URL, Mount, Provider.FromURL)
//   - Asynchronous resolution and cancellable watches (see Future, Watch)
//   - Provider factories keyed by plugin id (see Registry, DefaultRegistry)
//   - Deployed provider instances per environment (see ProviderRegistry)
//   - Strict environment expansion and provider config decoding
//     (see ExpandString, ExpandConfig, DecodeConfig)
//
// Provider URLs name the provider in their first segment:
//   - Path form:   /vault/secret/database
//   - Scheme form: secret://vault/secret/database?namespace=team-a
//
// Secret values never appear in String or GoString output.
package secret
