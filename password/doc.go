// Package password implements Argon2id password hashing.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Password policy beyond the minimum length lives in the engine.
package password
