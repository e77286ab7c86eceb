// Copyright 2026 The Gatehouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

// -----------------------------------------------------------------------------
// Builtin vocabulary
// These are the canonical operation, object and profile values seeded at
// deployment. Stored roles reference them by value; treat them as append-only.
// -----------------------------------------------------------------------------

// Operations
const (
	OpRead   Operation = "read"
	OpEdit   Operation = "edit"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// Objects
const (
	ObjInvoice         Object = "invoice"
	ObjInvoiceLineItem Object = "invoice_line_item"
	ObjCustomer        Object = "customer"
	ObjWorkOrder       Object = "work_order"
	ObjSchedule        Object = "schedule"
)

// Profile values
const (
	ProfileAdministrator = "administrator"
	ProfileEmployee      = "employee"
	ProfileClient        = "client"
)

// BuiltinSeed is the default catalog: every operation crossed with every
// object, with profile validity narrowing what each profile may ever be
// granted. Deployments that need a different vocabulary load a JSON seed
// instead (CATALOG_SEED_PATH).
func BuiltinSeed() Seed {
	ops := []Operation{OpRead, OpEdit, OpCreate, OpDelete}
	objs := []Object{ObjInvoice, ObjInvoiceLineItem, ObjCustomer, ObjWorkOrder, ObjSchedule}

	seed := Seed{
		Profiles: []SeedProfile{
			{Value: ProfileAdministrator, Label: "Administrator"},
			{Value: ProfileEmployee, Label: "Employee"},
			{Value: ProfileClient, Label: "Client"},
		},
	}

	for _, op := range ops {
		seed.Operations = append(seed.Operations, string(op))
	}
	for _, obj := range objs {
		seed.Objects = append(seed.Objects, string(obj))
	}
	for _, op := range ops {
		for _, obj := range objs {
			seed.Permissions = append(seed.Permissions, SeedPermission{
				Operation: string(op), Object: string(obj),
			})
		}
	}

	// Administrators and employees may be granted anything; clients are
	// limited to reading and editing their own billing objects.
	for _, profile := range []string{ProfileAdministrator, ProfileEmployee} {
		for _, p := range seed.Permissions {
			seed.ProfilePermissions = append(seed.ProfilePermissions, SeedProfilePermission{
				Profile: profile, Operation: p.Operation, Object: p.Object,
			})
		}
	}
	for _, obj := range []Object{ObjInvoice, ObjInvoiceLineItem, ObjSchedule} {
		for _, op := range []Operation{OpRead, OpEdit} {
			seed.ProfilePermissions = append(seed.ProfilePermissions, SeedProfilePermission{
				Profile: ProfileClient, Operation: string(op), Object: string(obj),
			})
		}
	}

	return seed
}

// MustBuiltin builds the builtin catalog, panicking on an inconsistent seed.
// The builtin seed is fixed at compile time so a panic here is a programming
// error caught by tests.
func MustBuiltin() *Catalog {
	c, err := New(BuiltinSeed())
	if err != nil {
		panic(err)
	}
	return c
}
