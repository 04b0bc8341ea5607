// Package compiler turns CUE configuration into schema facts and soft-delete
// policies.
//
// A configuration directory holds one CUE package with two top-level
// structs:
//
//	model: User: {
//	    fields: {
//	        id:      {type: "int", id: true}
//	        email:   {type: "string", unique: true}
//	        deleted: {type: "boolean"}
//	    }
//	    unique: [["name", "email"]]
//	    relations: posts: {model: "Post", list: true, from: "id", to: "authorId"}
//	}
//
//	softDelete: {
//	    default: {field: "deleted", encoder: "boolean"}
//	    models: {
//	        User: true
//	        Post: {field: "deletedAt", encoder: "timestamp"}
//	        Tag:  false
//	    }
//	}
//
// Compilation uses the CUE Go API directly. Errors carry the CUE source
// position when one is available.
package compiler
