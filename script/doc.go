// SPDX-License-Identifier: GPL-3.0-or-later

// Package script builds [*dsl.Stage] trees from YAML or JSON scripts.
//
// A script contains a pipeline, which is a list of steps. Each step is
// a single-key mapping from the stage name to the stage options:
//
//	pipeline:
//	  - domain_name: {domain: www.youtube.com}
//	  - dns_lookup_getaddrinfo: {}
//	  - make_endpoints_for_port: {port: 443}
//	  - new_endpoint_pipeline:
//	      - tcp_connect: {}
//	      - tls_handshake: {alpn: [h2, http/1.1]}
//	      - http_connection_tls: {}
//	      - http_transaction: {}
//	      - discard: {}
//
// The value of a new_endpoint_pipeline step is the list of the steps
// to run for each endpoint. A list with two or more steps is composed
// using [dsl.Compose], while a list with a single step is that step.
//
// Steps are built using the constructors of the [dsl] package, hence
// the same validation rules apply.
package script
