// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package migration

import (
	"errors"
	"sort"

	"github.com/libcoin/wallet/walletdb"
)

var (
	// ErrReversion is returned when an attempt to revert to a
	// previously detected version is made. This is guarded against
	// since some upgrades may not be backwards compatible.
	ErrReversion = errors.New("reverting to a previous version is not " +
		"supported")
)

// Version represents a database version number. A database can be
// brought from a previous version to a later one by applying its
// migration.
type Version struct {
	// Number is the number identifying this version.
	Number uint32

	// Migration is the function that modifies the database's state
	// to match this version. Care must be taken so that subsequent
	// migrations build upon the previous one to ensure the database
	// remains consistent.
	Migration func(walletdb.ReadWriteBucket) error
}

// Manager is an interface that exposes the methods required to
// migrate/upgrade a service. Each service implementing this interface
// can then use the Upgrade function to carry out any database
// migrations it requires.
type Manager interface {
	// Name returns the name of the service being upgraded.
	Name() string

	// Namespace returns the top-level bucket of the service.
	Namespace() walletdb.ReadWriteBucket

	// CurrentVersion returns the current version of the service's
	// database.
	CurrentVersion(walletdb.ReadBucket) (uint32, error)

	// SetVersion sets the version of the service's database.
	SetVersion(walletdb.ReadWriteBucket, uint32) error

	// Versions returns all of the versions available for the
	// service.
	Versions() []Version
}

// GetLatestVersion returns the latest version available within the
// given slice.
func GetLatestVersion(versions []Version) uint32 {
	if len(versions) == 0 {
		return 0
	}

	// Sort the slice before determining the latest version number to
	// ensure it reflects the last element.
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number < versions[j].Number
	})

	return versions[len(versions)-1].Number
}

// VersionsToApply determines which versions should be applied for
// migration based on the current version.
func VersionsToApply(currentVersion uint32, versions []Version) []Version {
	// Assuming migration versions are in increasing order, we apply
	// any migration whose version number is greater than the
	// current version.
	var upgradeVersions []Version
	for _, version := range versions {
		if version.Number > currentVersion {
			upgradeVersions = append(upgradeVersions, version)
		}
	}

	// Sort the slice by version number before returning to ensure
	// migrations are applied in the expected order.
	sort.Slice(upgradeVersions, func(i, j int) bool {
		return upgradeVersions[i].Number < upgradeVersions[j].Number
	})

	return upgradeVersions
}

// Upgrade attempts to upgrade the set of services exposed through the
// Manager interface. Each service has its available versions checked
// and applies any that are needed.
//
// NOTE: to guarantee fault tolerance, each service upgrade should
// occur within the same database transaction.
func Upgrade(mgrs ...Manager) error {
	for _, mgr := range mgrs {
		if err := upgrade(mgr); err != nil {
			return err
		}
	}

	return nil
}

// upgrade attempts to upgrade the service exposed through its
// implementation of the Manager interface. This function determines
// whether any new versions need to be applied based on the service's
// current version and the latest version available.
func upgrade(mgr Manager) error {
	// Start by fetching the service's current and latest versions.
	ns := mgr.Namespace()
	currentVersion, err := mgr.CurrentVersion(ns)
	if err != nil {
		return err
	}
	versions := mgr.Versions()
	latestVersion := GetLatestVersion(versions)

	switch {
	// If the current version is greater than the latest version, the
	// service is attempting to revert to one that may be backwards
	// incompatible. We return an error to indicate this.
	case currentVersion > latestVersion:
		return ErrReversion

	// If the current version lags behind the latest version, we need
	// to apply every newer version to catch up to the latest.
	case currentVersion < latestVersion:
		versions := VersionsToApply(currentVersion, versions)
		mgrName := mgr.Name()
		ns := mgr.Namespace()

		for _, version := range versions {
			log.Infof("Applying %v migration #%d", mgrName,
				version.Number)

			// If a migration is available for this version, run
			// it.
			if version.Migration != nil {
				err := version.Migration(ns)
				if err != nil {
					log.Errorf("Unable to apply %v "+
						"migration #%d: %v", mgrName,
						version.Number, err)
					return err
				}
			}
		}

		// After applying every version, we can now reflect the
		// service's latest version.
		if err := mgr.SetVersion(ns, latestVersion); err != nil {
			return err
		}

	// If the current version matches the latest version, no upgrade
	// is needed and we can safely return.
	case currentVersion == latestVersion:
	}

	return nil
}
