// Package services holds the vault's application services: the secret
// lifecycle, password reconfiguration, backups and the autodestruct. Each
// service checks the session's access mode before touching data.
package services
