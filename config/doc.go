/*
Package config loads the overlay configuration file and watches it for changes.

The file is YAML:

	dexcom:
	  username: someone@example.com
	  password: secret
	  region: us          # us, ous or jp
	chart:
	  unit: mgdl          # mgdl or mmol
	  hypo_threshold: 70
	  hyper_threshold: 180
	  upper_bound: 300
	  window_hours: 3
	  width: 800
	  height: 400
	  colors:
	    hypo: "#e74c3c"
	    normal: "#2ecc71"
	    hyper: "#f1c40f"
	    points: "#34495e"

Loading reads the file, applies defaults, applies the DEXCOM_USERNAME,
DEXCOM_PASSWORD and DEXCOM_REGION environment overrides and validates the
result. Omitted thresholds default to values for the configured unit.

A loaded File is converted once into the immutable interfaces.RenderConfig and
dexcom.Credentials snapshots handed to the server; a changed file produces new
snapshots, never a mutation of the running ones.
*/
package config
