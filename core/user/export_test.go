package user

// IsCommonPassword exposes isCommonPassword to the external user_test package.
var IsCommonPassword = isCommonPassword
