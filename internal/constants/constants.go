package constants

const USER_AGENT = "canchas/1.0 (+https://github.com/Amund211/canchas)"
