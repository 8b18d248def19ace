//go:build cgo

package main

/*
#cgo CFLAGS: -Wall -Wextra
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
)

// Strings returned by this library must be released with FreeString.

func cstring(s string, ok bool) *C.char {
	if !ok {
		return nil
	}
	return C.CString(s)
}

func cbool(ok bool) C.int {
	if ok {
		return 0
	}
	return -1
}

//export Init
// Init opens the device database under dataDir. configPath may be empty.
// Returns 0 on success and -1 on failure.
func Init(dataDir, configPath *C.char) C.int {
	return cbool(core.status(core.open(C.GoString(dataDir), C.GoString(configPath), app.Options{})))
}

//export Cleanup
// Cleanup stops background sync and closes the database.
func Cleanup() C.int {
	return cbool(core.status(core.close()))
}

//export GetLastError
// GetLastError returns the last error as JSON.
func GetLastError() *C.char {
	return C.CString(core.lastError())
}

//export FreeString
// FreeString frees a string allocated by Go.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

//export SetOnline
// SetOnline reports the host's connectivity. Going online triggers a sync.
func SetOnline(online C.int) C.int {
	return cbool(core.status(core.setOnline(online != 0)))
}

// =====================================================
// Session
// =====================================================

//export Login
func Login(request *C.char) *C.char {
	return cstring(core.login(C.GoString(request)))
}

//export Logout
func Logout() C.int {
	return cbool(core.logout())
}

//export CurrentUser
func CurrentUser() *C.char {
	return cstring(core.currentUser())
}

// =====================================================
// Machines and Downtime
// =====================================================

//export ListMachines
func ListMachines() *C.char {
	return cstring(core.listMachines())
}

//export SetMachineStatus
func SetMachineStatus(id, status *C.char) *C.char {
	return cstring(core.setMachineStatus(C.GoString(id), C.GoString(status)))
}

//export StartDowntime
func StartDowntime(machineID *C.char) *C.char {
	return cstring(core.startDowntime(C.GoString(machineID)))
}

//export EndDowntime
// EndDowntime closes an event. input is a JSON EndDowntimeInput.
func EndDowntime(id, input *C.char) *C.char {
	return cstring(core.endDowntime(C.GoString(id), C.GoString(input)))
}

//export AmendDowntimeNotes
func AmendDowntimeNotes(id, notes *C.char) *C.char {
	return cstring(core.amendDowntimeNotes(C.GoString(id), C.GoString(notes)))
}

//export ListDowntime
func ListDowntime(filter *C.char) *C.char {
	return cstring(core.listDowntime(C.GoString(filter)))
}

//export GetReasons
func GetReasons() *C.char {
	return cstring(core.reasons())
}

// =====================================================
// Maintenance and Alerts
// =====================================================

//export ListMaintenance
func ListMaintenance(machineID *C.char) *C.char {
	return cstring(core.listMaintenance(C.GoString(machineID)))
}

//export MarkMaintenanceDone
func MarkMaintenanceDone(id, notes *C.char) *C.char {
	return cstring(core.markMaintenanceDone(C.GoString(id), C.GoString(notes)))
}

//export AddMaintenanceNote
func AddMaintenanceNote(id, notes *C.char) *C.char {
	return cstring(core.addMaintenanceNote(C.GoString(id), C.GoString(notes)))
}

//export ListAlerts
func ListAlerts(filter *C.char) *C.char {
	return cstring(core.listAlerts(C.GoString(filter)))
}

//export CreateAlert
func CreateAlert(input *C.char) *C.char {
	return cstring(core.createAlert(C.GoString(input)))
}

//export AcknowledgeAlert
func AcknowledgeAlert(id *C.char) *C.char {
	return cstring(core.acknowledgeAlert(C.GoString(id)))
}

//export ClearAlert
func ClearAlert(id *C.char) *C.char {
	return cstring(core.clearAlert(C.GoString(id)))
}

// =====================================================
// KPIs and Sync
// =====================================================

//export GetKPIs
func GetKPIs() *C.char {
	return cstring(core.kpis())
}

//export GetSyncStatus
func GetSyncStatus() *C.char {
	return cstring(core.syncStatus())
}

//export ForceSync
func ForceSync() *C.char {
	return cstring(core.forceSync())
}
