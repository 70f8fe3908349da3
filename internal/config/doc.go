// Package config reads splicer's TOML configuration.
//
// Load starts from Default, decodes the file (unknown keys are errors),
// fills blanks from the environment (SPLICER_API_TOKEN, DATABASE_URL,
// SPLICER_NTFY_TOPIC and the AWS credential variables), expands ~ in paths
// and validates the result. The same Config drives the server and the CLI
// client: admission limits, the sandbox backend, artifact storage, job
// persistence, polling and notifications.
package config
