// Package spec models secret references and secret bindings.
//
// A reference literal such as
//
//	<< /vault/database:password >>
//	<< name redis-password >>
//	<< uri /vault/{#request.headers['tenant'][0]} key password >>
//
// is parsed into a Ref. A Spec is the declarative description of a secret
// binding: where the secret lives (uri, key), the alias it is known under
// (name), how it is refreshed (Resolution) and who may read it (ACLs).
//
// Registry indexes Specs by id, name, uri and uri:key. EnvAwareRegistry keeps
// one Registry per environment (tenant) plus a provider-wide registry for
// Specs declared without an environment.
package spec
