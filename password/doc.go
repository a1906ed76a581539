// Package password hashes account passwords for the reference identity
// backend with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash use unpadded standard base64. [Hasher.NeedsRehash] reports
// hashes produced with weaker parameters so callers can rehash after a
// successful sign in.
//
// Length policy lives with the caller; this package never stores or logs
// plaintext.
package password
