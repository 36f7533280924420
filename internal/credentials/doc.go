// Package credentials persists the device's provisioned settings.
//
// The credential store holds exactly five named string values: the WiFi
// SSID and password, the broker username and key, and the feed key. They
// are written as one atomic group by the provisioning portal, read once at
// boot by the device controller, and erased together by the manual reset.
//
// Concurrency: the store has a single logical caller (the boot sequence or
// the portal, never both at once), so no locking is done here.
package credentials
