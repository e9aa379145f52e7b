package credentials

// account is the users row joined with its credential, as read on login.
type account struct {
	UserID       string `db:"id"`
	Email        string `db:"email"`
	FullName     string `db:"full_name"`
	Nickname     string `db:"nickname"`
	PasswordHash string `db:"password_hash"`
}
