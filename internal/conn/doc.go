// Package conn holds listener-side socket plumbing shared by handflip's
// servers: TCP listeners that apply keepalive settings to accepted
// connections and, where the platform allows, SO_REUSEPORT.
package conn
