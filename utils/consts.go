package utils

// user facing messages
const GENERIC_SIGNUP_ERROR = "We had some trouble signing you up. Please try again!"
const USERNAME_TAKEN_SIGNUP_ERROR = "Someone is already using that username! Please choose a different one!"
const EMAIL_TAKEN_SIGNUP_ERROR = "That email can't be used for a new account. Try logging in or resetting your password."
const WEAK_PASSWORD_ERROR = "Passwords need 8 to 128 characters with an upper case letter, a lower case letter and a number."
const GENERIC_LOGIN_ERROR = "We had some trouble logging you in. Please try again!"
const INVALID_CREDENTIALS_ERROR = "That username and password don't match."
const ACCOUNT_LOCKED_ERROR = "Too many failed logins. "
const NOT_AUTHENTICATED_ERROR = "Please log in to continue."
const INCORRECT_PASSWORD_ERROR = "Your current password is incorrect."
const NO_PASSWORD_SET_ERROR = "This account signs in with Google and has no password."
const INVALID_RESET_TOKEN_ERROR = "That reset link is invalid or has expired. Please request a new one."
const PASSWORD_RESET_REQUESTED = "If an account exists for that email, a password reset link has been sent."
const PASSWORD_RESET_DONE = "Your password has been reset. Please log in."
const PASSWORD_CHANGED = "Your password has been changed."
const LOGGED_OUT = "You have been logged out."
const GOOGLE_UNLINKED = "Your Google account has been unlinked."
const GOOGLE_ALREADY_LINKED_ERROR = "The account with that email is linked to a different Google account."
const ACCOUNT_DELETED = "Your account has been deleted."
const GENERIC_RATE_LIMIT_ERROR = "You've been trying that a lot. "
const SERVER_DOWN = "We're having trouble right now. Please try again shortly."

// password policy
const MIN_PASSWORD_LENGTH = 8
const MAX_PASSWORD_LENGTH = 128

// lockout feedback is only shown once this few attempts are left
const REMAINING_ATTEMPTS_HINT = 2

// bearer token type claim
const ACCESS_TYPE = "access"
