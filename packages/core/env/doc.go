// Package env resolves {{...}} expressions in suite files.
//
// An expression is one of:
//   - a variable set from the config, the command line or a .env file
//   - $NAME, an environment variable
//   - a built-in call such as uuid() or fixture(ingredients.json, data.0.name)
//
// .env files are read with LoadDotEnv and never override variables already
// present in the process environment.
package env
