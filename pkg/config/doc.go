/*
Package config loads the docfmt settings.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	   +---------------+---------------+
	   |               |               |
	+--+---+       +---+---+       +---+---+
	| YAML |       |  HCL  |       | JSON  |
	+------+       +-------+       +-------+
	                   |
	            +------+------+
	            | environment |
	            | overrides   |
	            +-------------+

🔄 Flow:
1. Pick a parser by file extension
2. Decode the file, rejecting unknown fields
3. Apply environment overrides (GOOGLE_CLIENT_ID, API_PATH_RULES, ...)
4. Validate and fill defaults

A file is optional: FromEnv builds the same Config from the environment
alone, which is how the server usually runs.
*/
package config
