// Package capture periodically saves VM display screenshots as PNG files.
//
// A Scheduler holds one job per (vm id, display) key. A job fires a capture
// attempt right away and then on every interval until it is stopped or its
// VM is destroyed. Each attempt streams the frame into a temporary file,
// converts it to PNG at {output_dir}/{host id}/{vm id}[_{display}].png and
// removes the temporary file whatever the outcome. A failed attempt leaves
// the job armed for the next tick.
//
// The Sweeper keeps the job set aligned with the running VMs of connected
// hosts on a cron schedule.
package capture
