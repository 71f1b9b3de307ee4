// Package dotenv parses single lines of the .env format into key/value pairs.
//
// A line is split into a key and a value. The value goes through a small
// character-level state machine that understands:
//
//   - strong quotes ('...'), copied verbatim
//   - weak quotes ("..."), with escapes and substitution active
//   - backslash escapes for \\ \' \" \$ \<space> and \n
//   - $NAME and ${NAME} substitution
//   - trailing comments, which must be preceded by whitespace
//
// Substitutions are resolved against the environment first and then against
// the keys already parsed from the same source, which a Table accumulates
// across calls to ParseLine. Unknown names expand to the empty string.
//
// The package does no I/O: it never opens files and never writes the process
// environment. See package envfile for that.
package dotenv
