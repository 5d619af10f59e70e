package commands

const (
	_etc = "/usr/local/etc/com.github.iter8"
	_var = "/usr/local/var/com.github.iter8"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CONFIG      = _etc + "/iter8.yaml"
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)
