// Package lifecycle is the secrets runtime: one Service owns every registry
// (Specs, providers, discovery contexts, grants), the resolver, the cache
// and the renewal scheduler, and drives Specs through
// UNDEPLOYED, DEPLOYING and DEPLOYED.
//
// Deploy registers a Spec, resolves it once into the cache and hands it to
// the renewal scheduler when its resolution asks for it. Undeploy reverses
// each step; renewal is cancelled first and synchronously, so no stale tick
// can overwrite a later deploy of the same natural id. Every discovery
// context referencing a deployed or undeployed Spec is re-authorized.
//
// DeployDefinition connects resources to the runtime: it walks a resource
// with a discovery.DefinitionBrowser, binds every reference it finds and
// rewrites the reference into a template call reading the secret through a
// grant token.
package lifecycle
