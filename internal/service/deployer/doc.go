// Package deployer pushes firmware and web-assets images to a fleet of devices
// over their HTTP management API, one device at a time.
//
// Each device passes through a staged sequence (health check, firmware upload,
// reboot wait, web-assets upload, final reboot, online confirmation); a failed
// device is recorded and the rest of the fleet is still processed. A marker
// file guards against two deployments running at once.
package deployer
