// Package violations defines the persistence boundary for evaluator output.
//
// Repository implementations live in the storage subpackage.
package violations
