// Package repository define el contrato de persistencia de usuarios.
//
// La interfaz UserRepository es el único punto de contacto entre los
// front-ends HTTP y el almacenamiento. Las implementaciones concretas
// viven en internal/store/adapters/ (mongo para producción, memory como
// doble de pruebas determinístico).
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│           Front-ends HTTP (N frameworks)            │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│   UserRepository, Filter, Update, Pipeline          │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	              ┌─────────┴─────────┐
//	              ▼                   ▼
//	       ┌─────────────┐     ┌─────────────┐
//	       │  adapters/  │     │  adapters/  │
//	       │    mongo    │     │   memory    │
//	       └─────────────┘     └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Filter/Update/Pipeline son valores inmutables, reutilizables entre llamadas
//   - Errores de dominio están en errors.go; los adapters nunca los tragan
package repository
