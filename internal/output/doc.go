// Package output renders settings trees and persists the result.
//
// The package is organized around three concerns:
//
//   - Serialization (serializer.go): canonical XML plist via plistio, plus
//     YAML and JSON views of the same tree for inspection. All formats sort
//     dict keys and keep array order.
//
//   - Writers (writer.go): the [Writer] interface with [StdoutWriter] and
//     [FileWriter]. FileWriter creates parent directories and replaces the
//     target atomically so readers never see a partial file.
//
//   - Registry (registry.go): maps format names to serializers for the
//     show command.
package output
